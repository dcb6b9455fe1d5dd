package schema

import (
	"fmt"
	"strings"

	"github.com/wundergraph/graphql-go-tools/v2/pkg/ast"
	"github.com/wundergraph/graphql-go-tools/v2/pkg/astparser"
)

// ParseSchema parses a GraphQL schema (after preprocessing) into our Schema model
func ParseSchema(input string) (*Schema, error) {
	// First preprocess the input
	preprocessed := PreprocessGraphQL(input)

	// Parse the GraphQL document
	doc, report := astparser.ParseGraphqlDocumentString(preprocessed)
	if report.HasErrors() {
		return nil, fmt.Errorf("failed to parse GraphQL: %v", report)
	}

	schema := &Schema{
		Types:      []ObjectType{},
		Enums:      []EnumType{},
		Unions:     []UnionType{},
		Scalars:    []ScalarType{},
		Interfaces: []InterfaceType{},
		Services:   []Service{},
		Constants:  []Constant{},
		Meta:       Metadata{},
	}

	// Walk through definitions in document order
	for i := range doc.RootNodes {
		node := &doc.RootNodes[i]
		switch node.Kind {
		case ast.NodeKindObjectTypeDefinition:
			parseObjectType(&doc, node.Ref, i, schema)
		case ast.NodeKindInputObjectTypeDefinition:
			parseInputObjectType(&doc, node.Ref, i, schema)
		case ast.NodeKindEnumTypeDefinition:
			parseEnumType(&doc, node.Ref, i, schema)
		case ast.NodeKindUnionTypeDefinition:
			parseUnionType(&doc, node.Ref, i, schema)
		case ast.NodeKindScalarTypeDefinition:
			parseScalarType(&doc, node.Ref, i, schema)
		case ast.NodeKindInterfaceTypeDefinition:
			parseInterfaceType(&doc, node.Ref, i, schema)
		}
	}

	return schema, nil
}

func parseObjectType(doc *ast.Document, ref, position int, schema *Schema) {
	typeDef := doc.ObjectTypeDefinitions[ref]
	typeName := doc.Input.ByteSliceString(typeDef.Name)

	// Check if this is the _Schema type (contains okra metadata)
	if typeName == "_Schema" {
		parseOkraMetadata(doc, typeDef, schema)
		return
	}

	// Check if this is a service (type Service_*)
	if strings.HasPrefix(typeName, "Service_") {
		serviceName := strings.TrimPrefix(typeName, "Service_")
		parseService(doc, typeDef, serviceName, position, schema)
		return
	}

	if strings.HasPrefix(typeName, constTypePrefix) {
		parseConstant(doc, typeDef, strings.TrimPrefix(typeName, constTypePrefix), position, schema)
		return
	}

	objType := ObjectType{
		Name:     typeName,
		Doc:      getDescription(doc, typeDef.Description),
		Fields:   []Field{},
		Position: position,
	}

	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		objType.Fields = append(objType.Fields, parseField(doc, fieldRef))
	}

	schema.Types = append(schema.Types, objType)
}

func parseInputObjectType(doc *ast.Document, ref, position int, schema *Schema) {
	inputDef := doc.InputObjectTypeDefinitions[ref]

	objType := ObjectType{
		Name:     doc.Input.ByteSliceString(inputDef.Name),
		Doc:      getDescription(doc, inputDef.Description),
		Input:    true,
		Fields:   []Field{},
		Position: position,
	}

	for _, valueRef := range inputDef.InputFieldsDefinition.Refs {
		objType.Fields = append(objType.Fields, parseInputValue(doc, valueRef))
	}

	schema.Types = append(schema.Types, objType)
}

func parseEnumType(doc *ast.Document, ref, position int, schema *Schema) {
	enumDef := doc.EnumTypeDefinitions[ref]

	enumType := EnumType{
		Name:     doc.Input.ByteSliceString(enumDef.Name),
		Doc:      getDescription(doc, enumDef.Description),
		Values:   []EnumValue{},
		Position: position,
	}

	for _, valueRef := range enumDef.EnumValuesDefinition.Refs {
		valueDef := doc.EnumValueDefinitions[valueRef]
		enumType.Values = append(enumType.Values, EnumValue{
			Name: doc.Input.ByteSliceString(valueDef.EnumValue),
			Doc:  getDescription(doc, valueDef.Description),
		})
	}

	schema.Enums = append(schema.Enums, enumType)
}

func parseUnionType(doc *ast.Document, ref, position int, schema *Schema) {
	unionDef := doc.UnionTypeDefinitions[ref]

	union := UnionType{
		Name:     doc.Input.ByteSliceString(unionDef.Name),
		Doc:      getDescription(doc, unionDef.Description),
		Members:  []string{},
		Position: position,
	}

	for _, typeRef := range unionDef.UnionMemberTypes.Refs {
		member, _ := parseType(doc, typeRef)
		union.Members = append(union.Members, member)
	}

	schema.Unions = append(schema.Unions, union)
}

func parseScalarType(doc *ast.Document, ref, position int, schema *Schema) {
	scalarDef := doc.ScalarTypeDefinitions[ref]

	schema.Scalars = append(schema.Scalars, ScalarType{
		Name:       doc.Input.ByteSliceString(scalarDef.Name),
		Doc:        getDescription(doc, scalarDef.Description),
		Directives: parseDirectives(doc, scalarDef.Directives),
		Position:   position,
	})
}

func parseInterfaceType(doc *ast.Document, ref, position int, schema *Schema) {
	ifaceDef := doc.InterfaceTypeDefinitions[ref]

	schema.Interfaces = append(schema.Interfaces, InterfaceType{
		Name:     doc.Input.ByteSliceString(ifaceDef.Name),
		Doc:      getDescription(doc, ifaceDef.Description),
		Position: position,
	})
}

func parseOkraMetadata(doc *ast.Document, typeDef ast.ObjectTypeDefinition, schema *Schema) {
	// Find the field with @okra directive
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		fieldDef := doc.FieldDefinitions[fieldRef]

		for _, directiveRef := range fieldDef.Directives.Refs {
			directive := doc.Directives[directiveRef]
			if doc.Input.ByteSliceString(directive.Name) != "okra" {
				continue
			}

			args := parseDirectiveArgs(doc, directive)
			schema.Meta.Namespace = args["namespace"]
			schema.Meta.Version = args["version"]
			schema.Meta.Service = args["service"]
			return
		}
	}
}

func parseConstant(doc *ast.Document, typeDef ast.ObjectTypeDefinition, name string, position int, schema *Schema) {
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		field := parseField(doc, fieldRef)
		for _, d := range field.Directives {
			if d.Name != "const" {
				continue
			}
			schema.Constants = append(schema.Constants, Constant{
				Name:     name,
				Type:     field.Type,
				Value:    d.Args["value"],
				Doc:      getDescription(doc, typeDef.Description),
				Position: position,
			})
			return
		}
	}
}

func parseService(doc *ast.Document, typeDef ast.ObjectTypeDefinition, serviceName string, position int, schema *Schema) {
	service := Service{
		Name:      serviceName,
		Doc:       getDescription(doc, typeDef.Description),
		Namespace: schema.Meta.Namespace,
		Version:   schema.Meta.Version,
		Methods:   []Method{},
		Position:  position,
	}

	// Methods are the fields of the service type
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		service.Methods = append(service.Methods, parseMethod(doc, fieldRef))
	}

	schema.Services = append(schema.Services, service)
}

func parseField(doc *ast.Document, fieldRef int) Field {
	fieldDef := doc.FieldDefinitions[fieldRef]

	field := Field{
		Name:       doc.Input.ByteSliceString(fieldDef.Name),
		Doc:        getDescription(doc, fieldDef.Description),
		Directives: parseDirectives(doc, fieldDef.Directives),
	}
	field.Type, field.Required = parseType(doc, fieldDef.Type)

	return field
}

func parseInputValue(doc *ast.Document, valueRef int) Field {
	valueDef := doc.InputValueDefinitions[valueRef]

	field := Field{
		Name:       doc.Input.ByteSliceString(valueDef.Name),
		Doc:        getDescription(doc, valueDef.Description),
		Directives: parseDirectives(doc, valueDef.Directives),
	}
	field.Type, field.Required = parseType(doc, valueDef.Type)

	return field
}

func parseMethod(doc *ast.Document, fieldRef int) Method {
	fieldDef := doc.FieldDefinitions[fieldRef]

	method := Method{
		Name:       doc.Input.ByteSliceString(fieldDef.Name),
		Doc:        getDescription(doc, fieldDef.Description),
		Directives: parseDirectives(doc, fieldDef.Directives),
		Args:       []Field{},
	}
	method.OutputType, method.OutputRequired = parseType(doc, fieldDef.Type)

	for _, argRef := range fieldDef.ArgumentsDefinition.Refs {
		method.Args = append(method.Args, parseInputValue(doc, argRef))
	}

	return method
}

// parseType renders a type reference without its outer non-null marker and
// reports whether that marker was present. Inner markers are kept, so a
// non-null list of non-null strings reads ("[String!]", true).
func parseType(doc *ast.Document, typeRef int) (string, bool) {
	required := false
	currentRef := typeRef

	if doc.Types[currentRef].TypeKind == ast.TypeKindNonNull {
		required = true
		currentRef = doc.Types[currentRef].OfType
	}

	switch doc.Types[currentRef].TypeKind {
	case ast.TypeKindList:
		innerType, innerRequired := parseType(doc, doc.Types[currentRef].OfType)
		if innerRequired {
			innerType += "!"
		}
		return "[" + innerType + "]", required
	case ast.TypeKindNamed:
		return doc.Input.ByteSliceString(doc.Types[currentRef].Name), required
	}

	return "Unknown", required
}

func parseDirectives(doc *ast.Document, directives ast.DirectiveList) []Directive {
	result := []Directive{}

	for _, directiveRef := range directives.Refs {
		directive := doc.Directives[directiveRef]

		result = append(result, Directive{
			Name: doc.Input.ByteSliceString(directive.Name),
			Args: parseDirectiveArgs(doc, directive),
		})
	}

	return result
}

func parseDirectiveArgs(doc *ast.Document, directive ast.Directive) map[string]string {
	args := make(map[string]string)

	for _, argRef := range directive.Arguments.Refs {
		arg := doc.Arguments[argRef]
		argName := doc.Input.ByteSliceString(arg.Name)

		value := doc.ArgumentValue(argRef)
		args[argName] = parseValue(doc, value)
	}

	return args
}

func parseValue(doc *ast.Document, value ast.Value) string {
	switch value.Kind {
	case ast.ValueKindString:
		return doc.StringValueContentString(value.Ref)

	case ast.ValueKindEnum:
		if value.Ref >= 0 && value.Ref < len(doc.EnumValues) {
			return doc.Input.ByteSliceString(doc.EnumValues[value.Ref].Name)
		}

	case ast.ValueKindBoolean:
		// The Ref is either 0 (false) or 1 (true)
		if value.Ref >= 0 && value.Ref < len(doc.BooleanValues) {
			if doc.BooleanValues[value.Ref] {
				return "true"
			}
			return "false"
		}

	case ast.ValueKindInteger:
		return fmt.Sprintf("%d", doc.IntValueAsInt(value.Ref))

	case ast.ValueKindFloat:
		return fmt.Sprintf("%f", doc.FloatValueAsFloat32(value.Ref))
	}

	return ""
}

func getDescription(doc *ast.Document, desc ast.Description) string {
	if !desc.IsDefined {
		return ""
	}

	return strings.TrimSpace(doc.Input.ByteSliceString(desc.Content))
}
